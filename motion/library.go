package motion

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Template 可重复播放的序列定义，关键帧以偏移表示
type Template struct {
	Name          string        `yaml:"name" json:"name"`
	Description   string        `yaml:"description" json:"description"`
	Loop          bool          `yaml:"loop,omitempty" json:"loop"`
	Priority      int           `yaml:"priority,omitempty" json:"priority"`
	TotalDuration time.Duration `yaml:"total_duration,omitempty" json:"total_duration"`
	Steps         []Step        `yaml:"steps" json:"steps"`
}

// Instantiate 以 start 为起点生成可提交的序列
func (t Template) Instantiate(start time.Time) (Sequence, error) {
	b := NewSequence(t.Name).Priority(t.Priority).TotalDuration(t.TotalDuration)
	if t.Loop {
		b.Loop()
	}
	for _, s := range t.Steps {
		b.Add(s)
	}
	return b.At(start)
}

// libraryFile 序列库文件的顶层结构
type libraryFile struct {
	Sequences []Template `yaml:"sequences"`
}

// Library 命名序列模板管理器
type Library struct {
	mu        sync.RWMutex
	templates map[string]Template
}

// NewLibrary 创建空的序列库
func NewLibrary() *Library {
	return &Library{templates: make(map[string]Template)}
}

// Register 注册一个模板，同名模板会被覆盖
func (l *Library) Register(t Template) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.templates[t.Name] = t
}

// Get 获取指定名称的模板
func (l *Library) Get(name string) (Template, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.templates[name]
	return t, ok
}

// Names 返回全部模板名称（升序）
func (l *Library) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	names := make([]string, 0, len(l.templates))
	for name := range l.templates {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Description 获取模板描述，不存在时返回空串
func (l *Library) Description(name string) string {
	if t, ok := l.Get(name); ok {
		return t.Description
	}
	return ""
}

// Instantiate 按名称生成序列
func (l *Library) Instantiate(name string, start time.Time) (Sequence, error) {
	t, ok := l.Get(name)
	if !ok {
		return Sequence{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	return t.Instantiate(start)
}

// ParseLibrary 解析 YAML 序列库并注册到 l，返回注册数量
func (l *Library) ParseLibrary(data []byte) (int, error) {
	var file libraryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return 0, fmt.Errorf("解析序列库失败：%w", err)
	}
	for i, t := range file.Sequences {
		if t.Name == "" {
			return 0, fmt.Errorf("%w: library entry %d has no name", ErrInvalidSequence, i)
		}
		if len(t.Steps) == 0 {
			return 0, fmt.Errorf("%w: library entry %q has no steps", ErrInvalidSequence, t.Name)
		}
	}
	for _, t := range file.Sequences {
		l.Register(t)
	}
	return len(file.Sequences), nil
}

// LoadLibraryFile 从文件加载序列库
func (l *Library) LoadLibraryFile(path string, log *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("读取序列库文件失败：%w", err)
	}
	n, err := l.ParseLibrary(data)
	if err != nil {
		return err
	}
	if log != nil {
		log.Info("✅ 序列库已加载", "path", path, "count", n)
	}
	return nil
}
