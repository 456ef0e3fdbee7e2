package obs

import (
	"encoding/json"
	"log"
	"os"
	"sync"
)

var (
	loggerOnce sync.Once
	logger     *log.Logger
)

// Logger returns the process-wide JSON line logger. The HTTP layer, the
// audit trail, the notification dispatcher and the migration runner all
// write through it, so the service emits a single log stream on stdout.
func Logger() *log.Logger {
	loggerOnce.Do(func() {
		logger = log.New(os.Stdout, "", 0)
	})
	return logger
}

// LogRequest emits one structured JSON line. An entry that cannot be
// marshaled is reported in place instead of being dropped silently.
func LogRequest(entry map[string]any) {
	data, err := json.Marshal(entry)
	if err != nil {
		Logger().Printf(`{"level":"error","msg":"dropping unmarshalable log entry","error":%q}`, err.Error())
		return
	}
	Logger().Println(string(data))
}
