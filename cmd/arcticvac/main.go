// Command arcticvac runs the Arctic vacancy pipeline and dashboard.
package main

import "github.com/JakeFAU/arctic-vacancy-pipeline/cmd"

func main() {
	cmd.Execute()
}
