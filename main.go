/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package main

import (
	"github.com/josephgoksu/TaskPace/cmd"
	"github.com/josephgoksu/TaskPace/internal/logger"
)

func main() {
	defer logger.HandlePanic()
	cmd.Execute()
}
