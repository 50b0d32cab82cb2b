package logger

// Logger defines the interface for logging operations. Std satisfies it for
// components that take their logger as a dependency.
type Logger interface {
	Debug() *LogEvent
	Info() *LogEvent
	Warn() *LogEvent
	Error() *LogEvent
}

type std struct{}

// Std returns the package-level logger as a Logger.
func Std() Logger {
	return std{}
}

func (std) Debug() *LogEvent { return Debug() }
func (std) Info() *LogEvent  { return Info() }
func (std) Warn() *LogEvent  { return Warn() }
func (std) Error() *LogEvent { return Error() }
