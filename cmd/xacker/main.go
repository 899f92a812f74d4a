package main

import (
	"os"

	"github.com/xames3/xacker/internal/cli"
	"github.com/xames3/xacker/internal/logging"
)

var version = "dev"

func main() {
	cli.SetVersion(version)
	if err := cli.Main(os.Args); err != nil {
		// Fatal startup errors surface through the log stream before abort;
		// everything else exits 0.
		logging.Logger().Fatal(err)
	}
}
