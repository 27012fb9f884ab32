// Command interviewctl runs and inspects interview sessions.
package main

import "interviewer/internal/cli"

func main() {
	cli.Execute()
}
