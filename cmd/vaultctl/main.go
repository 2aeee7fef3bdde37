// Команда vaultctl - клиент командной строки для сервера TokenVault.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := run(newApp(os.Stdout), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "Ошибка:", err)
		os.Exit(1)
	}
}
