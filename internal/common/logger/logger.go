package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Service   string `json:"service"`
	Action    string `json:"action"`
	Message   string `json:"message"`
	Hostname  string `json:"hostname"`
	RequestID string `json:"request_id"`
	TripID    string `json:"trip_id,omitempty"`
	Error     *ErrObj `json:"error,omitempty"`
}

type ErrObj struct {
	Msg   string `json:"msg"`
	Stack string `json:"stack"`
}

var hostname, _ = os.Hostname()

var serviceName = "unknown-service"

// SetServiceName is called once at startup, before any log output.
func SetServiceName(name string) {
	serviceName = name
}

func Info(action, message, requestID, tripID string) {
	output(LogEntry{
		Timestamp: time.Now().Format(time.RFC3339),
		Level:     "INFO",
		Service:   serviceName,
		Action:    action,
		Message:   message,
		Hostname:  hostname,
		RequestID: requestID,
		TripID:    tripID,
	})
}

func Debug(action, message, requestID, tripID string) {
	output(LogEntry{
		Timestamp: time.Now().Format(time.RFC3339),
		Level:     "DEBUG",
		Service:   serviceName,
		Action:    action,
		Message:   message,
		Hostname:  hostname,
		RequestID: requestID,
		TripID:    tripID,
	})
}

func Warn(action, message, requestID, tripID, errMsg string) {
	entry := LogEntry{
		Timestamp: time.Now().Format(time.RFC3339),
		Level:     "WARN",
		Service:   serviceName,
		Action:    action,
		Message:   message,
		Hostname:  hostname,
		RequestID: requestID,
		TripID:    tripID,
	}
	if errMsg != "" {
		entry.Error = &ErrObj{Msg: errMsg}
	}
	output(entry)
}

func Error(action, message, requestID, tripID, errMsg string) {
	output(LogEntry{
		Timestamp: time.Now().Format(time.RFC3339),
		Level:     "ERROR",
		Service:   serviceName,
		Action:    action,
		Message:   message,
		Hostname:  hostname,
		RequestID: requestID,
		TripID:    tripID,
		Error:     &ErrObj{Msg: errMsg},
	})
}

func output(entry LogEntry) {
	jsonData, _ := json.Marshal(entry)
	fmt.Println(string(jsonData))
}
