package dashboard

import (
	"strings"

	"github.com/samber/lo"
)

// DefaultQCSuffix marks quality-control queues in the operational snapshot.
const DefaultQCSuffix = "QC"

// QueueMetrics holds the per-queue distinct-document counts computed from one
// operational snapshot.
type QueueMetrics struct {
	Primary       Counts
	PrimaryLocked Counts
	QC            Counts
	QCLocked      Counts
	// Processed counts every raw queue name over the unpartitioned snapshot.
	Processed Counts
}

// Partition splits a raw queue name into its base queue and whether it belongs
// to the quality-control partition.
func Partition(queue, suffix string) (base string, qc bool) {
	queue = NormalizeLabel(queue)
	if suffix == "" || !strings.HasSuffix(queue, suffix) {
		return queue, false
	}
	return strings.TrimSpace(strings.TrimSuffix(queue, suffix)), true
}

// Aggregate computes QueueMetrics. Records without a queue or document id are
// ignored; duplicate document ids within a queue count once.
func Aggregate(records []Record, qcSuffix string) QueueMetrics {
	records = lo.Filter(records, func(r Record, _ int) bool {
		return NormalizeLabel(r.Queue) != "" && strings.TrimSpace(r.DocumentID) != ""
	})
	primary, qc := lo.FilterReject(records, func(r Record, _ int) bool {
		_, isQC := Partition(r.Queue, qcSuffix)
		return !isQC
	})
	base := func(r Record) string {
		b, _ := Partition(r.Queue, qcSuffix)
		return b
	}
	raw := func(r Record) string { return r.Queue }

	return QueueMetrics{
		Primary:       distinctDocuments(primary, raw),
		PrimaryLocked: distinctDocuments(locked(primary), raw),
		QC:            distinctDocuments(qc, base),
		QCLocked:      distinctDocuments(locked(qc), base),
		Processed:     distinctDocuments(records, raw),
	}
}

// DistinctDocuments counts the distinct document ids recorded under the raw
// queue name queue.
func DistinctDocuments(records []Record, queue string) int {
	key := JoinKey(queue)
	ids := lo.FilterMap(records, func(r Record, _ int) (string, bool) {
		id := strings.TrimSpace(r.DocumentID)
		return id, id != "" && JoinKey(r.Queue) == key
	})
	return len(lo.Uniq(ids))
}

func locked(records []Record) []Record {
	return lo.Filter(records, func(r Record, _ int) bool { return r.Lock == Locked })
}

func distinctDocuments(records []Record, queue func(Record) string) Counts {
	groups := lo.GroupBy(records, func(r Record) string { return JoinKey(queue(r)) })
	out := make(Counts, len(groups))
	for key, rs := range groups {
		out[key] = len(lo.Uniq(lo.Map(rs, func(r Record, _ int) string {
			return strings.TrimSpace(r.DocumentID)
		})))
	}
	return out
}
