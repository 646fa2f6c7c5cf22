//go:build windows

package main

import "os"

// Windows consoles have no resize signal; the size is sent once on attach
func notifyResize(ch chan<- os.Signal) {}
