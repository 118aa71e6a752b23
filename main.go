package main

import (
	"MuseFM/cmd"
	"log"
)

func main() {
	cmd.Execute()
	// If Execute() had a problem, Cobra would have called os.Exit.
	log.Println("Application command execution finished or server started.")
}
