package api

import (
	"fmt"
	"net/http"

	"animatronic/easing"
	"animatronic/motion"

	"github.com/gin-gonic/gin"
)

// handleGetSequences 获取活动序列
func (s *Server) handleGetSequences(c *gin.Context) {
	sequences := s.scheduler.ActiveSequences()

	c.JSON(http.StatusOK, ApiResponse{
		Status: "success",
		Data: SequenceListResponse{
			Sequences: sequences,
			Total:     len(sequences),
		},
	})
}

// handleSubmitSequence 提交序列
func (s *Server) handleSubmitSequence(c *gin.Context) {
	var req SequenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ApiResponse{
			Status: "error",
			Error:  "无效的序列数据：" + err.Error(),
		})
		return
	}

	name := req.Name
	if name == "" {
		name = "custom"
	}
	b := motion.NewSequence(name).Priority(req.Priority).TotalDuration(seconds(req.TotalDuration))
	if req.Loop {
		b.Loop()
	}
	for _, kf := range req.Keyframes {
		kind, _ := easing.Parse(kf.Easing)
		b.Add(motion.Step{
			Channel:  *kf.Channel,
			Target:   *kf.Angle,
			Offset:   seconds(kf.Offset),
			Duration: seconds(kf.Duration),
			Easing:   kind,
			Hold:     seconds(kf.Hold),
		})
	}

	seq, err := b.At(s.scheduler.Now())
	if err != nil {
		respondError(c, "无效的序列：", err)
		return
	}
	s.submit(c, seq)
}

// handleCancelSequence 取消序列
func (s *Server) handleCancelSequence(c *gin.Context) {
	id := motion.SequenceID(c.Param("id"))
	if err := s.scheduler.CancelSequence(id); err != nil {
		respondError(c, "取消序列失败：", err)
		return
	}

	c.JSON(http.StatusOK, ApiResponse{
		Status:  "success",
		Message: fmt.Sprintf("序列 %s 已取消", id),
	})
}

// handleGetLibrary 获取序列库
func (s *Server) handleGetLibrary(c *gin.Context) {
	names := s.library.Names()
	entries := make([]LibraryEntry, 0, len(names))
	for _, name := range names {
		t, ok := s.library.Get(name)
		if !ok {
			continue
		}
		entry := LibraryEntry{
			Name:        t.Name,
			Description: t.Description,
			Loop:        t.Loop,
			Keyframes:   len(t.Steps),
		}
		if seq, err := t.Instantiate(s.startTime); err == nil {
			entry.Duration = seq.Cycle().Seconds()
		}
		entries = append(entries, entry)
	}

	c.JSON(http.StatusOK, ApiResponse{
		Status: "success",
		Data: LibraryResponse{
			Sequences: entries,
			Total:     len(entries),
		},
	})
}

// handlePlayLibrary 播放命名序列
func (s *Server) handlePlayLibrary(c *gin.Context) {
	seq, err := s.library.Instantiate(c.Param("name"), s.scheduler.Now())
	if err != nil {
		respondError(c, "播放序列失败：", err)
		return
	}
	s.submit(c, seq)
}

func (s *Server) submit(c *gin.Context, seq motion.Sequence) {
	id, err := s.scheduler.Submit(seq)
	if err != nil {
		respondError(c, "提交序列失败：", err)
		return
	}

	c.JSON(http.StatusAccepted, ApiResponse{
		Status:  "success",
		Message: fmt.Sprintf("序列 %s 已提交", seq.Name),
		Data: SequenceAcceptedResponse{
			ID:    string(id),
			Name:  seq.Name,
			State: s.scheduler.State().String(),
		},
	})
}
