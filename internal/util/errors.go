package util

import "errors"

var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotFound         = errors.New("resource not found")

	ErrEmailRegistered  = errors.New("该邮箱已被注册")
	ErrAccountDisabled  = errors.New("账号已被禁用")
	ErrAccountPending   = errors.New("账号待管理员审核")
	ErrNotEnrolled      = errors.New("You are not enrolled in this module")
	ErrAlreadyEnrolled  = errors.New("student already enrolled in this module")
	ErrQuizNotPublished = errors.New("quiz is not published yet")
	ErrQuizPastDue      = errors.New("quiz due date has passed")
	ErrScoreOutOfRange  = errors.New("score must be between 0 and maxScore")
	ErrFileTooLarge     = errors.New("file exceeds the maximum allowed size")
	ErrInvalidContainer = errors.New("invalid attachment container")
	ErrFileTypeMismatch = errors.New("file content does not match the declared type")
)
