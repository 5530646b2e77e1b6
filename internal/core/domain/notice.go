package domain

type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeError NoticeLevel = "error"
)

type Notice struct {
	Level   NoticeLevel
	Message string
}

type SignupRequest struct {
	Name     string
	Email    string
	Password string
}
