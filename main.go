package main

import "spark-backend/cmd"

func main() {
	cmd.Execute()
}
