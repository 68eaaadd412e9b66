package services

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	EntryReferencePrefix    = "TXN"
	TransferReferencePrefix = "TRF"
)

// ReferenceGenerator issues opaque unique references. Uniqueness within the
// process comes from the counter; the uuid suffix separates processes.
type ReferenceGenerator struct {
	counter atomic.Uint64
	now     func() time.Time
}

func NewReferenceGenerator() *ReferenceGenerator {
	return &ReferenceGenerator{now: time.Now}
}

func (g *ReferenceGenerator) Next(prefix string) string {
	seq := g.counter.Add(1)
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("%s%d%06d%s", prefix, g.now().UTC().UnixMilli(), seq%1_000_000, suffix)
}

func (g *ReferenceGenerator) Entry() string {
	return g.Next(EntryReferencePrefix)
}

func (g *ReferenceGenerator) Transfer() string {
	return g.Next(TransferReferencePrefix)
}
