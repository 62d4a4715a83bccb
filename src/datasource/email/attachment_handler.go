// attachment_handler.go
package email

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ====================== 邮件处理器实现 ======================

// DataAttachmentHandler 把邮件里的航班数据附件(csv/xlsx)落盘
type DataAttachmentHandler struct {
	TargetSubject string          // 目标邮件主题关键词
	DataDir       string          // 附件保存目录
	processedUIDs map[uint32]bool // 已处理邮件UID记录
	lastSaved     string          // 最近一次保存的附件路径
	mu            sync.RWMutex    // 保护processedUIDs和lastSaved
}

func NewDataAttachmentHandler(subject, dataDir string) *DataAttachmentHandler {
	return &DataAttachmentHandler{
		TargetSubject: subject,
		DataDir:       dataDir,
		processedUIDs: make(map[uint32]bool),
	}
}

// isProcessed 检查邮件是否已处理过（线程安全）
func (h *DataAttachmentHandler) isProcessed(uid uint32) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.processedUIDs[uid]
}

// markAsProcessed 标记邮件为已处理（线程安全）
func (h *DataAttachmentHandler) markAsProcessed(uid uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.processedUIDs[uid] = true
}

// LastSaved 最近保存的附件路径，没有保存过时为空串
func (h *DataAttachmentHandler) LastSaved() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastSaved
}

// isDataAttachment 附件扩展名是否是能进清洗管线的格式
func isDataAttachment(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}

// Handle 处理单个邮件：主题匹配则把数据附件保存到DataDir
func (h *DataAttachmentHandler) Handle(email *Email) error {
	// 检查是否已处理过该邮件
	if h.isProcessed(email.UID) {
		return nil
	}

	// 检查邮件主题是否包含目标关键词
	if !strings.Contains(email.Subject, h.TargetSubject) {
		log.Printf("跳过主题不匹配的邮件: %s", email.Subject)
		return nil
	}

	log.Printf("处理邮件: %s 发件人: %s 日期: %s",
		email.Subject, email.From, email.Date.Format("2006-01-02 15:04:05"))

	// 确保保存目录存在
	if err := os.MkdirAll(h.DataDir, 0755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}

	// 处理附件
	saved := false
	for _, attachment := range email.Attachments {
		if !isDataAttachment(attachment.Filename) {
			continue
		}

		// 只取文件名部分，防止附件名带路径跳出保存目录
		filePath := filepath.Join(h.DataDir, filepath.Base(attachment.Filename))
		if err := os.WriteFile(filePath, attachment.Content, 0644); err != nil {
			return fmt.Errorf("保存附件失败: %w", err)
		}

		log.Printf("附件已保存到: %s", filePath)
		h.mu.Lock()
		h.lastSaved = filePath
		h.mu.Unlock()
		saved = true
	}

	// 有数据附件才算处理完，空邮件留给下次重试
	if saved {
		h.markAsProcessed(email.UID)
	}

	return nil
}
