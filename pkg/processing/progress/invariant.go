//go:build !debug

package progress

const strictInvariants = false
