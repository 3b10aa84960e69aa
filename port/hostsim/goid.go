//go:build !tinygo

package hostsim

import (
	"bytes"
	"runtime"
)

// goid returns the calling goroutine's id. The simulated port has no
// thread-local storage to map port calls back to task contexts, so it leans
// on the id printed in the first line of a stack trace ("goroutine N [...").
func goid() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	s := buf[:n]
	s = s[len("goroutine "):]
	if i := bytes.IndexByte(s, ' '); i >= 0 {
		s = s[:i]
	}
	var id uint64
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			break
		}
		id = id*10 + uint64(ch-'0')
	}
	return id
}
