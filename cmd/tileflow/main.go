// Command tileflow lays out and renders workflow diagrams, and serves the
// same operations over HTTP and MCP.
package main

func main() {
	Execute()
}
