// cmd/yepctl/main.go
package main

func main() {
    Execute()
}
