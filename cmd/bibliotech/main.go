// Command bibliotech は図書館管理APIサーバーとワーカーを起動する。
//
//	bibliotech [serve|worker|migrate|stats|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/Lua-Sdy/bibliotech-Trabalho-Final/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
