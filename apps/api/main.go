package main

// TODO: schedule the recent-updates job periodically instead of relying on the admin runjob command.
func main() {
	startWithDig()
}
