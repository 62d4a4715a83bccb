package email

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AirlinesAnalysis/src/storage"
)

// fakeMailService 内存邮件服务，测试不碰真实IMAP
type fakeMailService struct {
	emails     []*Email
	connectErr error
	fetchErr   error
}

func (f *fakeMailService) Connect() error { return f.connectErr }
func (f *fakeMailService) Disconnect()    {}
func (f *fakeMailService) FetchUnreadEmails() ([]*Email, error) {
	return f.emails, f.fetchErr
}

func testLogger(t *testing.T) *storage.Logger {
	t.Helper()
	logger, err := storage.NewLogger(filepath.Join(t.TempDir(), "test.log"))
	require.NoError(t, err)
	t.Cleanup(func() { logger.Close() })
	return logger
}

func TestFilterLatestTargetEmail(t *testing.T) {
	base := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	emails := []*Email{
		{UID: 1, Subject: "航班延误数据 6月1日", Date: base},
		{UID: 2, Subject: "周报", Date: base.Add(2 * time.Hour)},
		{UID: 3, Subject: "航班延误数据 6月2日", Date: base.Add(time.Hour)},
	}

	got := filterLatestTargetEmail(emails, "航班延误数据")
	require.NotNil(t, got)
	assert.Equal(t, uint32(3), got.UID, "应取日期最新的匹配邮件")

	assert.Nil(t, filterLatestTargetEmail(emails, "不存在的主题"))
	assert.Nil(t, filterLatestTargetEmail(nil, "航班延误数据"))
}

func TestDecodeHeader(t *testing.T) {
	// 未编码的头原样返回
	assert.Equal(t, "plain subject", decodeHeader("plain subject"))

	// UTF-8 B编码
	assert.Equal(t, "航班延误数据", decodeHeader("=?UTF-8?B?6Iiq54+t5bu26K+v5pWw5o2u?="))

	// GB2312要走字符集转换
	assert.Equal(t, "航班延误数据", decodeHeader("=?gb2312?B?ur2w4NHTzvPK/b7d?="))
}

func TestCheckAndProcessEmails(t *testing.T) {
	logger := testLogger(t)
	base := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

	svc := &fakeMailService{emails: []*Email{
		{UID: 1, Subject: "航班延误数据", Date: base},
		{UID: 2, Subject: "航班延误数据", Date: base.Add(time.Hour)},
	}}

	got, err := CheckAndProcessEmails(svc, "航班延误数据", logger)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, uint32(2), got.UID)
}

func TestCheckAndProcessEmailsNoMail(t *testing.T) {
	logger := testLogger(t)

	got, err := CheckAndProcessEmails(&fakeMailService{}, "航班延误数据", logger)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCheckAndProcessEmailsConnectError(t *testing.T) {
	logger := testLogger(t)
	svc := &fakeMailService{connectErr: errors.New("拒绝连接")}

	_, err := CheckAndProcessEmails(svc, "航班延误数据", logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "连接失败")
}

func TestDataAttachmentHandlerSavesDataFiles(t *testing.T) {
	dir := t.TempDir()
	h := NewDataAttachmentHandler("航班延误数据", dir)

	msg := &Email{
		UID:     7,
		Subject: "航班延误数据 6月",
		From:    "ops@example.com",
		Date:    time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC),
		Attachments: []*Attachment{
			{Filename: "flights.xlsx", Content: []byte("xlsx-bytes")},
			{Filename: "flights.csv", Content: []byte("csv-bytes")},
			{Filename: "readme.txt", Content: []byte("text")},
		},
	}
	require.NoError(t, h.Handle(msg))

	// 数据附件落盘，其他格式跳过
	assert.FileExists(t, filepath.Join(dir, "flights.xlsx"))
	assert.FileExists(t, filepath.Join(dir, "flights.csv"))
	assert.NoFileExists(t, filepath.Join(dir, "readme.txt"))
	assert.Equal(t, filepath.Join(dir, "flights.csv"), h.LastSaved())

	// 已处理的UID不再重复保存
	require.NoError(t, os.Remove(filepath.Join(dir, "flights.csv")))
	require.NoError(t, h.Handle(msg))
	assert.NoFileExists(t, filepath.Join(dir, "flights.csv"))
}

func TestDataAttachmentHandlerSubjectMismatch(t *testing.T) {
	dir := t.TempDir()
	h := NewDataAttachmentHandler("航班延误数据", dir)

	msg := &Email{
		UID:     8,
		Subject: "会议纪要",
		Attachments: []*Attachment{
			{Filename: "flights.csv", Content: []byte("csv-bytes")},
		},
	}
	require.NoError(t, h.Handle(msg))
	assert.NoFileExists(t, filepath.Join(dir, "flights.csv"))
	assert.Empty(t, h.LastSaved())
}

func TestDataAttachmentHandlerStripsAttachmentPath(t *testing.T) {
	dir := t.TempDir()
	h := NewDataAttachmentHandler("航班延误数据", dir)

	msg := &Email{
		UID:     9,
		Subject: "航班延误数据",
		Attachments: []*Attachment{
			{Filename: "../escape.csv", Content: []byte("csv-bytes")},
		},
	}
	require.NoError(t, h.Handle(msg))

	// 带路径的附件名只保留文件名部分
	assert.FileExists(t, filepath.Join(dir, "escape.csv"))
	assert.NoFileExists(t, filepath.Join(filepath.Dir(dir), "escape.csv"))
}
