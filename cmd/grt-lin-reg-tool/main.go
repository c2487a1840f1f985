// Command grt-lin-reg-tool trains a linear regression model on a GRT
// regression data file or a CSV file and saves the trained pipeline.
//
// A CSV file holds one sample per row: the first N columns are the inputs
// and the last T columns are the targets. N and T must then be given with
// -n and -t, since only GRT files describe their own shape.
//
//	grt-lin-reg-tool -f <dataset-file> [-n <int>] [-t <int>] [--model <output-file>]
package main

import "os"

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}
