package handler

import (
	"relaychat/internal/app/chat"
	"relaychat/internal/app/storage"
	"relaychat/internal/configs"
	"relaychat/internal/pkg/auth/jwt"
)

// AppDeps is everything the HTTP layer needs.
type AppDeps struct {
	Manager        *chat.Manager
	Config         *configs.AppConfig
	StorageService storage.StorageService
	Tokens         *jwt.Issuer

	// UploadDir is served under /uploads when set (local upload backend).
	UploadDir string
}
