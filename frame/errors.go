package frame

const (
	ErrBehaviorExit   ErrBehavior = iota // stop Execute and return the error
	ErrBehaviorLog                       // log and continue with next frame
	ErrBehaviorIgnore                    // continue silently
)

type ErrBehavior uint8
