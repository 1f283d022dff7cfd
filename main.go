package main

import "github.com/frahmantamala/invoice-admin/cmd"

func main() {
	cmd.Execute()
}
