package models

import "animatronic/device"

// RegisterBackendTypes 注册全部真实硬件后端
func RegisterBackendTypes(r *device.Registry) {
	r.Register(CanBridgeName, NewCanBridgeBackend)
	r.Register(MaestroName, NewMaestroBackend)
}
