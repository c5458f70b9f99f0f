package main

import (
	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{Use: "litreview"}

	root.AddCommand(reviewCMD(), versionCMD())
	_ = root.Execute()
}
