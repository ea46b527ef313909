// Command termsync runs shell commands inside a pseudo-terminal and blocks
// until each one finishes, or serves terminal sessions over HTTP.
//
//	termsync run -- make build
//	termsync serve --config termsync.yaml
package main
