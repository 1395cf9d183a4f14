package define

// 配置结构体
type Config struct {
	ConfigPath      string // rig 配置文件，空表示使用内置默认配置
	WebPort         string // 非空时覆盖配置文件中的端口
	LogLevel        string
	LogFormat       string
	Backend         string  // 非空时覆盖配置文件中的后端类型
	TickRate        float64 // >0 时覆盖配置文件中的控制频率
	SequenceLibrary string  // 非空时覆盖配置文件中的序列库路径
}

// API 响应结构体
type ApiResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}
