package logger

import (
	"context"
	"fmt"
	"time"

	common_models "go-campaign/internal/common/models"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap/zapcore"
)

// LogEntry holds the data passed from Zap to our worker
type LogEntry struct {
	Level      zapcore.Level
	Message    string
	Caller     string
	CampaignId string
	OwnerId    string
	Error      string
}

// LogStore is satisfied by *mongo.Collection.
type LogStore interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
}

// DBLogWriter handles the async writing
type DBLogWriter struct {
	store    LogStore
	logChan  chan LogEntry
	appId    string
	minLevel zapcore.Level
	done     chan struct{}
}

// NewDBLogWriter starts the background worker draining entries into store.
func NewDBLogWriter(store LogStore, appId string, minLevel zapcore.Level) *DBLogWriter {
	writer := &DBLogWriter{
		store:    store,
		logChan:  make(chan LogEntry, 1000),
		appId:    appId,
		minLevel: minLevel,
		done:     make(chan struct{}),
	}

	go writer.processLogs()

	return writer
}

// AddLog is called by our Zap hook
func (w *DBLogWriter) AddLog(entry LogEntry) {
	select {
	case w.logChan <- entry:
	default:
		// Channel full: drop rather than block the request path
		fmt.Println("DB Log Channel Full! Dropping log:", entry.Message)
	}
}

// Close stops accepting entries and waits for the queue to drain.
func (w *DBLogWriter) Close() {
	close(w.logChan)
	<-w.done
}

func (w *DBLogWriter) processLogs() {
	defer close(w.done)
	for entry := range w.logChan {
		logRecord := common_models.Log{
			AppId:        w.appId,
			Message:      entry.Message,
			Caller:       entry.Caller,
			CampaignId:   entry.CampaignId,
			OwnerId:      entry.OwnerId,
			Error:        entry.Error,
			LogLevelId:   mapLevelToInt(entry.Level),
			CreatedOnUtc: time.Now().UTC(),
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		w.store.InsertOne(ctx, logRecord)
		cancel()
	}
}

func mapLevelToInt(l zapcore.Level) int {
	switch l {
	case zapcore.DebugLevel:
		return 10
	case zapcore.InfoLevel:
		return 20
	case zapcore.WarnLevel:
		return 30
	case zapcore.ErrorLevel:
		return 40
	case zapcore.FatalLevel:
		return 50
	default:
		return 20
	}
}
