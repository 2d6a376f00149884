// Package logger expone el zap del proceso: un singleton configurado una
// sola vez en main, loggers nombrados por componente, y propagación por
// contexto para que los logs de un request compartan sus campos.
package logger

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

var (
	once     sync.Once
	instance *zap.Logger
)

// Init configura el singleton. Idempotente: solo la primera llamada tiene
// efecto, el resto del proceso lo consume vía L/Named/From.
func Init(cfg Config) {
	once.Do(func() {
		instance = build(cfg)
	})
}

// L devuelve el singleton. Sin Init previo arranca uno de desarrollo, así
// los tests y los comandos chicos no necesitan bootstrap.
func L() *zap.Logger {
	if instance == nil {
		Init(Config{Env: "dev", Level: "info"})
	}
	return instance
}

// Named devuelve un logger con nombre de componente ("http", "oauth2", ...).
func Named(name string) *zap.Logger {
	return L().Named(name)
}

// Sync flushea lo pendiente. Para el defer de main.
func Sync() error {
	if instance != nil {
		return instance.Sync()
	}
	return nil
}

type ctxKey struct{}

// ToContext cuelga un logger del contexto. El middleware de request lo usa
// para que todo lo logueado río abajo lleve el request_id.
func ToContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From extrae el logger del contexto, o el singleton si no hay ninguno.
func From(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return L()
	}
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		return l
	}
	return L()
}
