package database

import (
	"context"
	"testing"

	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestTxFromContextEmpty(t *testing.T) {
	assert.Nil(t, TxFromContext(context.Background()))
}

func TestTxFromContextReturnsOpenTx(t *testing.T) {
	zapLogger, _ := zap.NewDevelopment()
	tx := NewTx(nil, zapadapter.NewZapEctoLogger(zapLogger, nil))

	ctx := context.WithValue(context.Background(), txKey, tx)
	assert.Same(t, tx, TxFromContext(ctx))
}

func TestTxFromContextIgnoresClosedTx(t *testing.T) {
	zapLogger, _ := zap.NewDevelopment()
	tx := NewTx(nil, zapadapter.NewZapEctoLogger(zapLogger, nil))
	tx.(*Transaction).isClosed = true

	ctx := context.WithValue(context.Background(), txKey, tx)
	assert.Nil(t, TxFromContext(ctx))
}
