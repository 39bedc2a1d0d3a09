// Package main is the homography command line tool: it matches the binary descriptors of two
// images and estimates the homography relating them.
package main

import (
	"os"

	"go.viam.com/stitch/logging"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logging.Global().Fatal(err)
	}
}
