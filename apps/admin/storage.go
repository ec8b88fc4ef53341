package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/aulaprof/aula/core/document"
)

var errAuditFailed = errors.New("storage and metadata are out of sync")

func (cli *commandLine) provision() error {
	created, err := document.EnsureBuckets(context.Background(), cli.store, document.Flows...)
	if err != nil {
		return err
	}
	if len(created) == 0 {
		fmt.Fprintln(cli.out, "all buckets exist")
		return nil
	}
	for _, b := range created {
		fmt.Fprintf(cli.out, "created bucket %s\n", b)
	}
	return nil
}

// audit reports rows without objects and objects without rows. With fix, orphaned objects are removed;
// rows without objects are only reported. Objects younger than the audit grace are left alone.
func (cli *commandLine) audit(flowName string, fix bool) error {
	flows := document.Flows
	if flowName != "" {
		flow, ok := document.FlowByName(flowName)
		if !ok {
			return errors.Errorf("unknown flow %q", flowName)
		}
		flows = []document.Flow{flow}
	}

	ctx := context.Background()
	clean := true
	for _, flow := range flows {
		report, err := cli.docSvc.Audit(ctx, flow)
		if err != nil {
			return errors.Wrap(err, "auditing "+flow.Name)
		}
		fmt.Fprintf(cli.out, "%s (bucket %s): %d rows, %d objects\n", report.Flow, report.Bucket, report.Records, report.Objects)
		for _, r := range report.DanglingRecords {
			fmt.Fprintf(cli.out, "  missing object: %s (row %s)\n", r.Path, r.ID)
		}
		for _, k := range report.OrphanedObjects {
			fmt.Fprintf(cli.out, "  orphaned object: %s\n", k)
		}
		for _, k := range report.RecentObjects {
			fmt.Fprintf(cli.out, "  recent object, skipped: %s\n", k)
		}

		if fix && len(report.OrphanedObjects) > 0 {
			if err = cli.docSvc.RemoveOrphans(ctx, report); err != nil {
				return errors.Wrap(err, "removing orphans of "+flow.Name)
			}
			fmt.Fprintf(cli.out, "  removed %d orphaned objects\n", len(report.OrphanedObjects))
			report.OrphanedObjects = nil
		}
		if !report.Clean() {
			clean = false
		}
	}
	if !clean {
		return errAuditFailed
	}
	return nil
}
