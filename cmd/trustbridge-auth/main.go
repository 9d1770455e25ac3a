package main

import "github.com/trustbridge/auth/app"

func main() {
	app.New(nil).Run()
}
