package logger

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Messages carries every encoded log entry, the binary decides how to render them.
var Messages = make(chan []byte, 512)

// dropped counts entries discarded because nobody was draining Messages fast enough.
var dropped uint64

const (
	ErrorLvl   = 0
	WarningLvl = 1
	InfoLvl    = 2
	ActionLvl  = 3
	NotesLvl   = 4
	MidiLvl    = 5
	SamplesLvl = 6

	DebugLvl = 378
)

var (
	Error   = zap.Int("level", ErrorLvl)
	Warning = zap.Int("level", WarningLvl)
	Info    = zap.Int("level", InfoLvl)
	Action  = zap.Int("level", ActionLvl)
	Notes   = zap.Int("level", NotesLvl)
	Midi    = zap.Int("level", MidiLvl)
	Samples = zap.Int("level", SamplesLvl)

	Debug = zap.Int("level", DebugLvl)
)

type chanWriter struct {
	sync.Mutex
}

// Write never blocks, the sample loop and timer callbacks log from real-time paths.
func (w *chanWriter) Write(p []byte) (n int, err error) {
	w.Lock()
	var newSlice = make([]byte, len(p))
	copy(newSlice, p)
	select {
	case Messages <- newSlice:
	default:
		atomic.AddUint64(&dropped, 1)
	}
	w.Unlock()
	return len(p), nil
}

func (w *chanWriter) Sync() error {
	return nil
}

// SetBufferSize replaces Messages with a channel of given capacity.
// It has to be called before anything is logged.
func SetBufferSize(size int) {
	if size < 1 {
		size = 1
	}
	Messages = make(chan []byte, size)
}

// Dropped returns amount of log entries lost due to full Messages buffer.
func Dropped() uint64 {
	return atomic.LoadUint64(&dropped)
}

var (
	once   sync.Once
	shared *zap.Logger
)

func GetLogger() *zap.Logger {
	once.Do(func() {
		writer := &chanWriter{}
		cfg := zap.NewProductionEncoderConfig()
		cfg.SkipLineEnding = true
		cfg.EncodeTime = zapcore.EpochNanosTimeEncoder
		cfg.LevelKey = ""
		encoder := zapcore.NewJSONEncoder(cfg)
		noSync := zapcore.Lock(writer)

		shared = zap.New(
			zapcore.NewCore(encoder, noSync, zap.DebugLevel),
			zap.AddCaller(),
		)
	})
	return shared
}
