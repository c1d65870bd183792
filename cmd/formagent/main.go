// Command formagent is the form autofill toolkit: a profile store server,
// a browser-watching fill daemon, and CLI access to the profile and the
// per-site enable switch.
package main

func main() {
	Execute()
}
