package domain

import "strings"

type ThreadType string

const (
	ThreadTypeDirect    ThreadType = "direct"
	ThreadTypeGroup     ThreadType = "group"
	ThreadTypeChannel   ThreadType = "channel"
	ThreadTypeBroadcast ThreadType = "broadcast"
	ThreadTypeCustom    ThreadType = "custom"
)

func (t ThreadType) Valid() bool {
	switch t {
	case ThreadTypeDirect, ThreadTypeGroup, ThreadTypeChannel, ThreadTypeBroadcast, ThreadTypeCustom:
		return true
	}
	return false
}

// RequiredParticipants возвращает точное число участников для типа или 0, если оно не ограничено.
func (t ThreadType) RequiredParticipants() int {
	if t == ThreadTypeDirect {
		return 2
	}
	return 0
}

type ParticipantRole string

const (
	RoleMember ParticipantRole = "member"
	RoleAdmin  ParticipantRole = "admin"
	RoleOwner  ParticipantRole = "owner"
)

func (r ParticipantRole) Valid() bool {
	switch r {
	case RoleMember, RoleAdmin, RoleOwner:
		return true
	}
	return false
}

func (r ParticipantRole) CanManageParticipants() bool {
	return r == RoleAdmin || r == RoleOwner
}

func (r ParticipantRole) CanDeleteThread() bool {
	return r == RoleOwner
}

type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeImage    MessageType = "image"
	MessageTypeVideo    MessageType = "video"
	MessageTypeAudio    MessageType = "audio"
	MessageTypeFile     MessageType = "file"
	MessageTypeLocation MessageType = "location"
	MessageTypeContact  MessageType = "contact"
	MessageTypeSystem   MessageType = "system"
	MessageTypeCustom   MessageType = "custom"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeVideo, MessageTypeAudio, MessageTypeFile,
		MessageTypeLocation, MessageTypeContact, MessageTypeSystem, MessageTypeCustom:
		return true
	}
	return false
}

func (t MessageType) IsMedia() bool {
	return t == MessageTypeImage || t == MessageTypeVideo || t == MessageTypeAudio || t == MessageTypeFile
}

type DeletionMode string

const (
	DeletionModeSoft   DeletionMode = "soft"
	DeletionModeHard   DeletionMode = "hard"
	DeletionModeHybrid DeletionMode = "hybrid"
)

func (m DeletionMode) Valid() bool {
	return m == DeletionModeSoft || m == DeletionModeHard || m == DeletionModeHybrid
}

func (m DeletionMode) AllowsSoftDelete() bool {
	return m == DeletionModeSoft || m == DeletionModeHybrid
}

func (m DeletionMode) AllowsHardDelete() bool {
	return m == DeletionModeHard || m == DeletionModeHybrid
}

type AttachmentType string

const (
	AttachmentTypeImage AttachmentType = "image"
	AttachmentTypeVideo AttachmentType = "video"
	AttachmentTypeAudio AttachmentType = "audio"
	AttachmentTypeFile  AttachmentType = "file"
)

func (t AttachmentType) Valid() bool {
	switch t {
	case AttachmentTypeImage, AttachmentTypeVideo, AttachmentTypeAudio, AttachmentTypeFile:
		return true
	}
	return false
}

// AttachmentTypeFromMime определяет тип вложения по префиксу MIME.
func AttachmentTypeFromMime(mime string) AttachmentType {
	mime = strings.ToLower(mime)
	switch {
	case strings.HasPrefix(mime, "image/"):
		return AttachmentTypeImage
	case strings.HasPrefix(mime, "video/"):
		return AttachmentTypeVideo
	case strings.HasPrefix(mime, "audio/"):
		return AttachmentTypeAudio
	default:
		return AttachmentTypeFile
	}
}

func (t AttachmentType) HasDuration() bool {
	return t == AttachmentTypeVideo || t == AttachmentTypeAudio
}

func (t AttachmentType) HasDimensions() bool {
	return t == AttachmentTypeImage || t == AttachmentTypeVideo
}

// MessageType соответствующий типу вложения.
func (t AttachmentType) MessageType() MessageType {
	return MessageType(t)
}
