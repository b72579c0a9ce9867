package frame

import "log"

type fallbackLogger struct {
}

func (f *fallbackLogger) Debug(msg string, args ...any) {
}

func (f *fallbackLogger) Error(msg string, args ...any) {
	log.Println(append([]any{msg}, args...)...)
}
