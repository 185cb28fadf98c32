package service

import "errors"

// 认证相关错误
var (
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrRegistrationFailed   = errors.New("registration failed: username already exists")
	ErrInternalServer       = errors.New("internal server error")
)

// 会话生命周期错误 (前置条件失败，同步拒绝，会话状态不变)
var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionFull        = errors.New("session is full")
	ErrSessionRunning     = errors.New("session already running")
	ErrSessionNotRunning  = errors.New("session is not running")
	ErrSessionEmpty       = errors.New("session has no members")
	ErrPasswordMismatch   = errors.New("session password mismatch")
	ErrNotOwner           = errors.New("only the session owner may do this")
	ErrNotMember          = errors.New("player is not a session member")
	ErrAlreadyMember      = errors.New("player is already a session member")
	ErrNoDungeonHere      = errors.New("no dungeon configured for this zone")
	ErrKeyItemRequired    = errors.New("owner does not hold the required key item")
	ErrLevelTooLow        = errors.New("player level too low for this dungeon")
	ErrExitNotPending     = errors.New("no exit confirmation pending or it expired")
	ErrInvalidPassword    = errors.New("password must be exactly 4 digits")
)

// 回合协调器错误 (瞬态输入错误，非致命)
var (
	ErrStaleTurn      = errors.New("turn already expired")
	ErrTurnResolving  = errors.New("turn resolution in progress")
	ErrAlreadyActed   = errors.New("action already submitted this turn")
	ErrMemberDead     = errors.New("member is not alive")
	ErrShieldRequired = errors.New("an equipped shield is required to defend")
	ErrItemNotOwned   = errors.New("player does not hold that item")
	ErrUnknownAction  = errors.New("unknown action kind")
)
