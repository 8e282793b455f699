package main

import (
	"context"
	"fmt"
	"time"
)

func (cli *commandLine) sweepIntents(olderThan time.Duration) error {
	res, err := cli.taskSvc.SweepAbandonedIntents(context.Background(), olderThan)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "finalized: %d, abandoned: %d, files deleted: %d\n", res.Finalized, res.Abandoned, res.FilesDeleted)
	return nil
}
