package main

import "github.com/Ian-Costa18/TorDownloader/cmd"

func main() {
	cmd.Execute()
}
