// Package main provides the rtperm CLI for negotiating runtime capability
// grants with a terminal host.
package main

func main() {
	Execute()
}
