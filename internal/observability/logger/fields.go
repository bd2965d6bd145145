package logger

import (
	"time"

	"go.uber.org/zap"
)

func Bits(v int) zap.Field { return zap.Int("bits", v) }

func KeySize(v int) zap.Field { return zap.Int("key_size", v) }

func Workers(v int) zap.Field { return zap.Int("workers", v) }

// Email tags the address a key or message belongs to.
func Email(v string) zap.Field { return zap.String("email", v) }

func Component(v string) zap.Field { return zap.String("component", v) }

// Op names the operation being logged (keygen, sendkey, ...).
func Op(v string) zap.Field { return zap.String("op", v) }

func Path(v string) zap.Field { return zap.String("path", v) }

func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }

func Err(err error) zap.Field { return zap.Error(err) }
