//go:build debug

package progress

// built with -tags debug: invariant violations abort
const strictInvariants = true
