package service

import (
	"github.com/haierkeys/fast-content-service/internal/domain"
	"github.com/haierkeys/fast-content-service/pkg/diff"
)

// storagePolicy decides how one recorded action stores its content.
// storagePolicy 决定一次操作的内容存储方式
type storagePolicy struct {
	codec            *diff.Codec
	snapshotInterval int64
}

func newStoragePolicy(codec *diff.Codec, snapshotInterval int) *storagePolicy {
	if snapshotInterval <= 0 {
		snapshotInterval = DefaultSnapshotInterval
	}
	return &storagePolicy{codec: codec, snapshotInterval: int64(snapshotInterval)}
}

// Decide returns the stored payload for version. Rules are evaluated in order:
// delete keeps the pre-delete content, create or a missing previous stores a snapshot,
// unchanged content stores nothing, interval boundaries store snapshot plus reverse diff,
// everything else stores only the reverse diff.
// Decide 按顺序匹配存储规则并返回载荷
func (p *storagePolicy) Decide(action domain.HistoryAction, version int64, current string, previous *string) domain.StoredContent {
	switch {
	case action == domain.HistoryActionDelete:
		return domain.SnapshotContent{Content: current}

	case action == domain.HistoryActionCreate || previous == nil:
		return domain.SnapshotContent{Content: current}

	case *previous == current:
		return domain.MetadataContent{}

	case version%p.snapshotInterval == 0:
		return domain.SnapshotContent{
			Content:     current,
			ReverseDiff: p.codec.ReverseText(current, *previous),
			HasDiff:     true,
		}

	default:
		return domain.DiffContent{ReverseDiff: p.codec.ReverseText(current, *previous)}
	}
}
