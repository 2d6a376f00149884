package logger

import (
	"time"

	"go.uber.org/zap"
)

// Campos estándar para que los logs HTTP y de protocolo queden uniformes.

func RequestID(v string) zap.Field { return zap.String("request_id", v) }

func Method(v string) zap.Field { return zap.String("method", v) }

func Path(v string) zap.Field { return zap.String("path", v) }

func Status(v int) zap.Field { return zap.Int("status", v) }

func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }

func ClientIP(v string) zap.Field { return zap.String("client_ip", v) }

// ClientID identifica al cliente OAuth del request.
func ClientID(v string) zap.Field { return zap.String("client_id", v) }

// UserID identifica al resource owner.
func UserID(v string) zap.Field { return zap.String("user_id", v) }

// GrantType identifica el grant usado en /oauth/token.
func GrantType(v string) zap.Field { return zap.String("grant_type", v) }

func Err(err error) zap.Field { return zap.Error(err) }
