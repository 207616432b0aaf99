// Package archive keeps an optional copy of every reposted video in S3.
package archive
