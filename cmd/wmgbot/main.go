package main

import "github.com/Saidqodirxon/WmgBot/internal/app"

func main() {
	app.Run()
}
