package document

import (
	"context"
	"path"
	"sort"
	"strings"

	"github.com/aulaprof/aula/core"
)

// AuditReport lists the pairs that lost their other half.
type AuditReport struct {
	Flow            string   `json:"flow"`
	Bucket          string   `json:"bucket"`
	Records         int      `json:"records"`
	Objects         int      `json:"objects"`
	DanglingRecords []Record `json:"dangling_records"` // row without object
	OrphanedObjects []string `json:"orphaned_objects"` // object without row
	// RecentObjects have no row yet but are younger than the grace window; an upload may still be
	// writing it.
	RecentObjects []string `json:"recent_objects"`
}

func (r AuditReport) Clean() bool {
	return len(r.DanglingRecords) == 0 && len(r.OrphanedObjects) == 0
}

// Audit compares the flow's rows with the objects under its folders.
// Flows sharing the bucket are taken into account, so their objects are not reported as orphans.
// Objects without a row whose key is younger than Options.AuditGrace are listed as recent, never
// as orphaned: their upload may be between the storage write and the row insert.
func (svc *Service) Audit(ctx context.Context, flow Flow) (AuditReport, error) {
	report := AuditReport{Flow: flow.Name, Bucket: flow.Bucket}

	own, err := svc.repo.QueryRecords(ctx, flow.Table, RecordFilter{Folders: flow.Folders})
	if err != nil {
		return report, core.NewPersistenceError("query "+flow.Table, err)
	}
	report.Records = len(own)

	known := make(map[string]bool)
	for _, table := range tables(sharingBucket(flow)) {
		recs, err := svc.repo.QueryRecords(ctx, table, RecordFilter{})
		if err != nil {
			return report, core.NewPersistenceError("query "+table, err)
		}
		for _, r := range recs {
			known[r.Path] = true
		}
	}

	objects := make(map[string]bool)
	for _, folder := range flow.Folders {
		keys, err := svc.store.List(ctx, flow.Bucket, folder)
		if err != nil {
			return report, core.NewStorageError("list", folder, err)
		}
		for _, k := range keys {
			if strings.HasPrefix(path.Base(k), ".") { // folder placeholders
				continue
			}
			objects[k] = true
		}
	}
	report.Objects = len(objects)

	for _, r := range own {
		if !objects[r.Path] {
			report.DanglingRecords = append(report.DanglingRecords, r)
		}
	}
	cutoff := svc.keys.Now().Add(-svc.opts.AuditGrace)
	for k := range objects {
		if known[k] {
			continue
		}
		if created, ok := KeyTime(k); ok && created.After(cutoff) {
			report.RecentObjects = append(report.RecentObjects, k)
			continue
		}
		report.OrphanedObjects = append(report.OrphanedObjects, k)
	}
	sort.Strings(report.OrphanedObjects)
	sort.Strings(report.RecentObjects)
	return report, nil
}

// RemoveOrphans deletes the orphaned objects of a report.
func (svc *Service) RemoveOrphans(ctx context.Context, report AuditReport) error {
	if len(report.OrphanedObjects) == 0 {
		return nil
	}
	if err := svc.store.Remove(ctx, report.Bucket, report.OrphanedObjects...); err != nil {
		return core.NewStorageError("remove", strings.Join(report.OrphanedObjects, ","), err)
	}
	return nil
}

func sharingBucket(flow Flow) []Flow {
	flows := []Flow{flow}
	for _, f := range Flows {
		if f.Bucket == flow.Bucket && f.Name != flow.Name {
			flows = append(flows, f)
		}
	}
	return flows
}
