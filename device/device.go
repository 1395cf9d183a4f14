package device

import "time"

// Status 后端连接状态
type Status struct {
	IsConnected bool      `json:"is_connected"`
	LastUpdate  time.Time `json:"last_update"`
	ErrorCount  int       `json:"error_count"`
	LastError   string    `json:"last_error,omitempty"`
}

// StatusReporter 可选接口，后端实现后可在遥测中展示连接状态
type StatusReporter interface {
	Status() Status
}

// BackendStatus 返回后端状态；后端未实现 StatusReporter 时 ok 为 false
func (a *Actuator) BackendStatus() (Status, bool) {
	if r, ok := a.backend.(StatusReporter); ok {
		return r.Status(), true
	}
	return Status{}, false
}
