// Command embergctl is the operator CLI for embergc: it drives an
// in-process collector against a synthetic mutator workload and reports
// on it, the way a language runtime's own tooling would inspect a live
// GC without a separate server process to attach to.
package main

func main() {
	Execute()
}
