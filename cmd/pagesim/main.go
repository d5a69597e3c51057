// Command pagesim runs the paging simulator.
package main

func main() {
	Execute()
}
