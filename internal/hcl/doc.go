// Package hcl loads component descriptors from HCL files.
//
// A file holds any number of software blocks:
//
//	software "snowflake-connector-python" {
//	  version       = "3.12.3"
//	  relative_path = "${name}-${version}"
//	  dependencies  = ["python", "cython"]
//
//	  source {
//	    url     = "https://example.com/${name}-${version}.7z"
//	    sha256  = "e3b0c442..."
//	    extract = "seven_zip"
//	  }
//
//	  build = ["python setup.py install --prefix=$OMNIBUILD_INSTALL_DIR"]
//	}
//
// The variables name and version are available in relative_path, source.url
// and build. Everything else is a literal.
package hcl
